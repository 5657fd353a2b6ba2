package scraper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchError_Transient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *FetchError
		want bool
	}{
		{name: "timeout", err: &FetchError{Kind: FetchErrTimeout}, want: true},
		{name: "network", err: &FetchError{Kind: FetchErrNetwork}, want: true},
		{name: "500", err: &FetchError{Kind: FetchErrHTTPStatus, StatusCode: 500}, want: true},
		{name: "503", err: &FetchError{Kind: FetchErrHTTPStatus, StatusCode: 503}, want: true},
		{name: "429", err: &FetchError{Kind: FetchErrHTTPStatus, StatusCode: 429}, want: true},
		{name: "404", err: &FetchError{Kind: FetchErrHTTPStatus, StatusCode: 404}, want: false},
		{name: "401", err: &FetchError{Kind: FetchErrHTTPStatus, StatusCode: 401}, want: false},
		{name: "410", err: &FetchError{Kind: FetchErrHTTPStatus, StatusCode: 410}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.err.Transient())
		})
	}
}

func TestFetchError_UnwrapsThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := &FetchError{Kind: FetchErrNetwork, URL: "https://example.com", Err: errors.New("connection refused")}
	wrapped := fmt.Errorf("page pipeline: %w", inner)

	var fetchErr *FetchError
	require.True(t, errors.As(wrapped, &fetchErr))
	require.Equal(t, FetchErrNetwork, fetchErr.Kind)
}

func TestValidateParameters(t *testing.T) {
	t.Parallel()

	valid := JobParameters{URL: "https://example.com", MaxDepth: 2, Concurrency: 4, RetryAttempts: 1}
	require.NoError(t, ValidateParameters(valid))

	tests := []struct {
		name   string
		mutate func(*JobParameters)
		field  string
	}{
		{name: "empty url", mutate: func(p *JobParameters) { p.URL = "" }, field: "url"},
		{name: "bad scheme", mutate: func(p *JobParameters) { p.URL = "ftp://example.com" }, field: "url"},
		{name: "negative depth", mutate: func(p *JobParameters) { p.MaxDepth = -1 }, field: "max_depth"},
		{name: "zero concurrency", mutate: func(p *JobParameters) { p.Concurrency = 0 }, field: "concurrency"},
		{name: "negative retries", mutate: func(p *JobParameters) { p.RetryAttempts = -2 }, field: "retry_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			params := valid
			tt.mutate(&params)
			err := ValidateParameters(params)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	t.Parallel()

	require.False(t, JobStatusPending.Terminal())
	require.False(t, JobStatusRunning.Terminal())
	require.True(t, JobStatusSucceeded.Terminal())
	require.True(t, JobStatusPartial.Terminal())
	require.True(t, JobStatusFailed.Terminal())
}
