package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
)

func dictionary(size int) []string {
	words := make([]string, 0, size)
	for i := 0; i < size; i++ {
		words = append(words, fmt.Sprintf("word%d", i))
	}
	return words
}

func BenchmarkNewModerator(b *testing.B) {
	words := dictionary(100_000)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewModerator(words, '*', log); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkModerator_Censor(b *testing.B) {
	mod, err := NewModerator(dictionary(10_000), '*', logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("hello there word42 how are w.o.r.d.7 you ", 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor(text)
	}
}
