package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	tests := []struct {
		name       string
		cpuPercent func(time.Duration, bool) ([]float64, error)
		memory     func() (*mem.VirtualMemoryStat, error)
		validate   func(t *testing.T, response SystemStatusResponse)
	}{
		{
			name: "reports sampled load",
			cpuPercent: func(time.Duration, bool) ([]float64, error) {
				return []float64{37.5}, nil
			},
			memory: func() (*mem.VirtualMemoryStat, error) {
				return &mem.VirtualMemoryStat{UsedPercent: 61.25, Used: 512 * 1024 * 1024}, nil
			},
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Equal(t, 37.5, response.CPUPercent)
				assert.Equal(t, 61.25, response.MemoryPercent)
				assert.Equal(t, 512.0, response.MemoryUsedMB)
			},
		},
		{
			name: "failed samples read as zero",
			cpuPercent: func(time.Duration, bool) ([]float64, error) {
				return nil, errors.New("cpu unavailable")
			},
			memory: func() (*mem.VirtualMemoryStat, error) {
				return nil, errors.New("memory unavailable")
			},
			validate: func(t *testing.T, response SystemStatusResponse) {
				assert.Equal(t, 0.0, response.CPUPercent)
				assert.Equal(t, 0.0, response.MemoryPercent)
				assert.Equal(t, 0.0, response.MemoryUsedMB)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSystemHandlers(zerolog.Nop())
			handler.cpuPercent = tt.cpuPercent
			handler.memory = tt.memory

			req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
			rec := httptest.NewRecorder()
			handler.HandleSystemStatus(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var response SystemStatusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, runtime.NumCPU(), response.NumCPU)
			assert.NotEmpty(t, response.GoVersion)
			assert.GreaterOrEqual(t, response.UptimeSeconds, 0.0)
			tt.validate(t, response)
		})
	}
}
