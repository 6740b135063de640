package manager

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func BenchmarkClassify(b *testing.B) {
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			run_classify(b, workers)
		})
	}
}

func run_classify(b *testing.B, workers int) {
	cfg, _ := testConfig(b, "")
	cfg.Engine.NumWorkers = workers
	cfg.Engine.ChunkSize = 1024

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	mgr, err := NewManager(cfg, logger, nil)
	if err != nil {
		b.Fatalf("Failed to create manager: %v", err)
	}
	input := mixedLog(100000)

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := mgr.ClassifyReader(context.Background(), "bench", strings.NewReader(input)); err != nil {
			b.Fatal(err)
		}
	}
}
