package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stateforward/go-emg/pkg/telemetry"
)

type recorder struct {
	trace.TracerProvider
	spans []*recorded
}

func (r *recorder) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{recorder: r}
}

type recordingTracer struct {
	trace.Tracer
	recorder *recorder
}

func (t *recordingTracer) Start(ctx context.Context, name string, options ...trace.SpanStartOption) (context.Context, trace.Span) {
	config := trace.NewSpanStartConfig(options...)
	span := &recorded{name: name, attributes: config.Attributes()}
	t.recorder.spans = append(t.recorder.spans, span)
	return ctx, span
}

type recorded struct {
	trace.Span
	name       string
	attributes []attribute.KeyValue
	errors     []error
	status     codes.Code
	ended      bool
}

func (s *recorded) End(options ...trace.SpanEndOption) { s.ended = true }
func (s *recorded) RecordError(err error, options ...trace.EventOption) {
	s.errors = append(s.errors, err)
}
func (s *recorded) SetStatus(code codes.Code, description string) { s.status = code }

func TestNoop(t *testing.T) {
	ctx, span := telemetry.Start(context.Background(), nil, "emg.refine")
	if ctx == nil || span == nil {
		t.Fatal("expected a context and a span")
	}
	if span.IsRecording() {
		t.Error("expected the no-op span not to record")
	}
	telemetry.End(span, errors.New("ignored"))
}

func TestStartEnd(t *testing.T) {
	provider := &recorder{}
	_, span := telemetry.Start(context.Background(), provider, "emg.resolve", attribute.String("emg.run", "1"))
	telemetry.End(span, nil)
	_, failed := telemetry.Start(context.Background(), provider, "emg.translate")
	telemetry.End(failed, errors.New("boom"))

	if len(provider.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(provider.spans))
	}
	ok, bad := provider.spans[0], provider.spans[1]
	if ok.name != "emg.resolve" || !ok.ended || ok.status != codes.Unset || len(ok.errors) != 0 {
		t.Errorf("unexpected span %+v", ok)
	}
	if len(ok.attributes) != 1 || ok.attributes[0].Value.AsString() != "1" {
		t.Errorf("unexpected attributes %v", ok.attributes)
	}
	if bad.status != codes.Error || len(bad.errors) != 1 || !bad.ended {
		t.Errorf("expected the error to be recorded, got %+v", bad)
	}
}
