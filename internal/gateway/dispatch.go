package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"soundcheck/internal/logging"
	"soundcheck/internal/similarity"
)

// ErrUnknownTask is returned by Dispatch for a name no operation answers to.
var ErrUnknownTask = errors.New("unknown task")

// Task names accepted by Dispatch.
const (
	TaskReferenceFingerprint    = "referenceFingerprint"
	TaskStatReference           = "statReference"
	TaskProbeReferenceDecode    = "probeReferenceDecode"
	TaskProbeLiveDecode         = "probeLiveDecode"
	TaskFingerprintAudioFromURL = "fingerprintAudioFromUrl"
	TaskFingerprintMedia        = "fingerprintMedia"
	TaskCompareFingerprints     = "compareFingerprints"
	TaskCompareBins             = "compareBins"
	TaskRecordStep              = "recordStep"
	TaskRecordAction            = "recordAction"
	TaskRecordNavTiming         = "recordNavTiming"
	TaskRecordRequest           = "recordRequest"
	TaskRecordRequestsBatch     = "recordRequestsBatch"
	TaskFlushResults            = "flushResults"
)

type handler func(g *Gateway, ctx context.Context, payload json.RawMessage) any

var handlers = map[string]handler{
	TaskReferenceFingerprint: func(g *Gateway, ctx context.Context, _ json.RawMessage) any {
		return g.ReferenceFingerprint(ctx)
	},
	TaskStatReference: func(g *Gateway, ctx context.Context, _ json.RawMessage) any {
		return g.StatReference(ctx)
	},
	TaskProbeReferenceDecode: func(g *Gateway, ctx context.Context, _ json.RawMessage) any {
		return g.ProbeReferenceDecode(ctx)
	},
	TaskProbeLiveDecode: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		req, ok := decodeMediaPayload(payload)
		if !ok {
			return ProbeResult{Error: "payload must be {url, seconds}"}
		}
		return g.ProbeLiveDecode(ctx, req)
	},
	TaskFingerprintAudioFromURL: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		url, ok := decodeURLPayload(payload)
		if !ok {
			g.warnPayload(ctx)
			return nil
		}
		return g.FingerprintAudioFromURL(ctx, url)
	},
	TaskFingerprintMedia: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		req, ok := decodeMediaPayload(payload)
		if !ok {
			g.warnPayload(ctx)
			return nil
		}
		return g.FingerprintMedia(ctx, req)
	},
	TaskCompareFingerprints: compareHandler,
	TaskCompareBins:         compareHandler,
	TaskRecordStep: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		g.RecordStep(ctx, payload)
		return nil
	},
	TaskRecordAction: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		g.RecordAction(ctx, payload)
		return nil
	},
	TaskRecordNavTiming: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		g.RecordNavTiming(ctx, payload)
		return nil
	},
	TaskRecordRequest: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		g.RecordRequest(ctx, payload)
		return nil
	},
	TaskRecordRequestsBatch: func(g *Gateway, ctx context.Context, payload json.RawMessage) any {
		g.RecordRequestsBatch(ctx, payload)
		return nil
	},
	TaskFlushResults: func(g *Gateway, ctx context.Context, _ json.RawMessage) any {
		if path := g.FlushResults(ctx); path != "" {
			return path
		}
		return nil
	},
}

func compareHandler(g *Gateway, ctx context.Context, payload json.RawMessage) any {
	var req CompareRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		g.warnPayload(ctx)
		return similarity.Result{}
	}
	return g.CompareFingerprints(ctx, req)
}

// Tasks lists the names Dispatch accepts, sorted.
func Tasks() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs the task called name with a JSON payload. The returned value
// is the operation's result, ready for JSON encoding; the only error is
// ErrUnknownTask. An empty payload is treated as null.
func (g *Gateway) Dispatch(ctx context.Context, name string, payload json.RawMessage) (any, error) {
	h, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	ctx = logging.WithTask(ctx, name)
	if _, ok := logging.RequestIDFromContext(ctx); !ok {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}

	logger := logging.WithContext(ctx, g.logger)
	start := time.Now()
	logger.Debug("task started")
	result := guard(ctx, g, name, any(nil), func() any {
		return h(g, ctx, payload)
	})
	logger.Debug("task finished", logging.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (g *Gateway) warnPayload(ctx context.Context) {
	logging.WarnWithContext(logging.WithContext(ctx, g.logger), "malformed task payload", "task_payload_invalid",
		logging.String(logging.FieldErrorHint, "check the task argument shape"),
	)
}
