// Command fakeassembly serves a local stand-in for the AssemblyAI upload and
// transcript endpoints, so the web form can be exercised without an account.
//
//	go run ./cmd/fakeassembly -addr :9000
//	DIARIZE_ASSEMBLYAI_BASE_URL=http://localhost:9000 go run ./cmd/server
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/apeckham/streamlit-assemblyai/internal/transcription/transcriptiontest"
)

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	key := flag.String("key", "", "Only accept this API key (empty accepts any)")
	failWith := flag.String("fail", "", "End every transcript in status error with this message")
	pending := flag.Int("pending", 2, "Polls answered with status processing before the result")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	fake := transcriptiontest.New(transcriptiontest.Behavior{
		ValidKey:     *key,
		FailWith:     *failWith,
		PendingPolls: *pending,
		Utterances: []transcriptiontest.Utterance{
			{Speaker: "A", Text: "Thanks for joining the call today.", Start: 0, End: 2100},
			{Speaker: "B", Text: "Happy to be here. Shall we start with the roadmap?", Start: 2300, End: 5200},
			{Speaker: "A", Text: "Yes, let's go through it section by section.", Start: 5400, End: 8000},
		},
	})

	handler := fake.Handler()
	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		handler.ServeHTTP(w, r)
		logger.Info("Request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})

	logger.Info("Fake AssemblyAI server starting",
		slog.String("address", *addr),
		slog.Int("pending_polls", *pending),
		slog.Bool("failing", *failWith != ""),
	)

	if err := http.ListenAndServe(*addr, logged); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
