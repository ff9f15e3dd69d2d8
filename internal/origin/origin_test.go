package origin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

var video = model.ContentItem{ID: "C1", Size: 40, Type: "video"}

// TestStatic_Fetch verifies payload synthesis and that the injected delay honors ctx.
func TestStatic_Fetch(t *testing.T) {
	payload, err := NewStatic(0).Fetch(context.Background(), video)
	require.NoError(t, err)
	require.Equal(t, "content:C1:video:40", string(payload))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = NewStatic(time.Second).Fetch(ctx, video)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestHTTP_Fetch verifies success, not-found mapping and unexpected statuses.
func TestHTTP_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/content/C1":
			_, _ = w.Write([]byte("bytes-of-c1"))
		case "/api/v1/content/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o, err := NewHTTP(srv.URL+"/", time.Second)
	require.NoError(t, err)

	payload, err := o.Fetch(context.Background(), video)
	require.NoError(t, err)
	require.Equal(t, "bytes-of-c1", string(payload))

	_, err = o.Fetch(context.Background(), model.ContentItem{ID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = o.Fetch(context.Background(), model.ContentItem{ID: "broken"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)

	_, err = NewHTTP("not-a-url", time.Second)
	require.Error(t, err)
}

type fakeGetter struct {
	objects map[string][]byte
	lastKey string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = *in.Key
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

// TestS3_Fetch verifies key prefixing and NoSuchKey mapping.
func TestS3_Fetch(t *testing.T) {
	getter := &fakeGetter{objects: map[string][]byte{"cdn/C1": []byte("obj")}}
	o := NewS3WithClient(getter, "bucket", "cdn/")

	payload, err := o.Fetch(context.Background(), video)
	require.NoError(t, err)
	require.Equal(t, "obj", string(payload))
	require.Equal(t, "cdn/C1", getter.lastKey)

	_, err = o.Fetch(context.Background(), model.ContentItem{ID: "nope"})
	require.ErrorIs(t, err, ErrNotFound)
}

type scriptedOrigin struct {
	err   error
	calls int
}

func (s *scriptedOrigin) Fetch(context.Context, model.ContentItem) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ok"), nil
}

// TestBreaker_TripsAndRecovers verifies closed to open to half-open to closed transitions.
func TestBreaker_TripsAndRecovers(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	next := &scriptedOrigin{err: errors.New("boom")}
	b := NewBreaker(next, config.BreakerCfg{MinRequests: 4, FailureRatio: 0.5, OpenTimeout: 30 * time.Second, HalfOpenRequests: 1}, clk, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := b.Fetch(ctx, video)
		require.Error(t, err)
	}
	require.Equal(t, StateOpen, b.State())

	_, err := b.Fetch(ctx, video)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, 4, next.calls)

	clk.Advance(31 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	// failed probe reopens
	_, err = b.Fetch(ctx, video)
	require.Error(t, err)
	require.Equal(t, StateOpen, b.State())

	clk.Advance(31 * time.Second)
	next.err = nil
	payload, err := b.Fetch(ctx, video)
	require.NoError(t, err)
	require.Equal(t, "ok", string(payload))
	require.Equal(t, StateClosed, b.State())
}

// TestBreaker_NotFoundIsHealthy verifies that missing content never trips the breaker.
func TestBreaker_NotFoundIsHealthy(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	next := &scriptedOrigin{err: ErrNotFound}
	b := NewBreaker(next, config.BreakerCfg{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute, HalfOpenRequests: 1}, clk, slog.New(slog.DiscardHandler))

	for i := 0; i < 10; i++ {
		_, err := b.Fetch(context.Background(), video)
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Equal(t, StateClosed, b.State())
}

// TestFromConfig verifies the static origin is wrapped by the breaker when configured.
func TestFromConfig(t *testing.T) {
	cfg := config.OriginCfg{Kind: config.OriginStatic, Timeout: time.Second, Breaker: &config.BreakerCfg{MinRequests: 1, FailureRatio: 1, OpenTimeout: time.Second, HalfOpenRequests: 1}}
	o, err := FromConfig(context.Background(), cfg, clock.Real{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.IsType(t, &Breaker{}, o)

	_, err = FromConfig(context.Background(), config.OriginCfg{Kind: "ftp"}, clock.Real{}, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}
