package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestAudit(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Audit Module Suite")
}

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
}

func (s *memorySink) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memorySink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

var _ = ginkgo.Describe("Recorder", func() {
	var (
		bus      *events.EventBus
		sink     *memorySink
		recorder *Recorder
	)

	ginkgo.BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		bus = events.NewEventBus(logger)
		sink = &memorySink{}
		RegisterSink(bus, sink, logger)
		recorder = NewRecorder(bus, logger)
	})

	ginkgo.It("should deliver the entry to the sink off the calling goroutine", func() {
		actor := int64(1)
		subject := int64(2)

		recorder.Record(context.Background(), events.AuditLoginSucceeded, &actor, &subject, "password")

		gomega.Eventually(sink.all).Should(gomega.HaveLen(1))
		entry := sink.all()[0]
		gomega.Expect(entry.EventName).To(gomega.Equal(events.AuditLoginSucceeded))
		gomega.Expect(*entry.ActorID).To(gomega.Equal(actor))
		gomega.Expect(*entry.SubjectID).To(gomega.Equal(subject))
		gomega.Expect(entry.Detail).To(gomega.Equal("password"))
		gomega.Expect(entry.EventID).ToNot(gomega.BeEmpty())
		gomega.Expect(entry.At).To(gomega.BeTemporally("~", time.Now(), 5*time.Second))
	})

	ginkgo.It("should never surface sink failures to the caller", func() {
		sink.fail = context.DeadlineExceeded

		recorder.Record(context.Background(), events.AuditLoginFailed, nil, nil, "")

		gomega.Consistently(sink.all, 100*time.Millisecond).Should(gomega.BeEmpty())
	})

	ginkgo.It("should deliver concurrent events without loss", func() {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				recorder.Record(context.Background(), events.AuditLoginFailed, nil, nil, "")
			}()
		}
		wg.Wait()

		gomega.Eventually(sink.all).Should(gomega.HaveLen(20))
	})
})
