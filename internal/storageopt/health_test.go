package storageopt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthContext(t *testing.T) {
	tests := []struct {
		name         string
		ctx          context.Context
		timeout      time.Duration
		wantDeadline bool
	}{
		{"positive timeout", context.Background(), 5 * time.Second, true},
		{"zero timeout", context.Background(), 0, false},
		{"negative timeout", context.Background(), -time.Second, false},
		{"nil ctx", nil, 5 * time.Second, true},
		{"nil ctx zero timeout", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hctx, cancel := HealthContext(tt.ctx, tt.timeout) //nolint:staticcheck // nil ctx 归一化
			defer cancel()

			assert.NotNil(t, hctx)
			deadline, ok := hctx.Deadline()
			assert.Equal(t, tt.wantDeadline, ok)
			if ok {
				assert.WithinDuration(t, time.Now().Add(tt.timeout), deadline, 100*time.Millisecond)
			}
		})
	}
}
