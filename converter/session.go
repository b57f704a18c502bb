package converter

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/media"
)

type cancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func newCancelToken() *cancelToken {
	return &cancelToken{
		ch: make(chan struct{}),
	}
}

func (t *cancelToken) Close(ctx context.Context) {
	t.once.Do(func() {
		logger.Debugf(ctx, "closing the cancellation token")
		close(t.ch)
	})
}

func (t *cancelToken) CloseChan() <-chan struct{} {
	return t.ch
}

func (t *cancelToken) IsClosed() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

type scopedGrant struct {
	releaseOnce sync.Once
	grant       media.AccessGrant
}

func (g *scopedGrant) Release(ctx context.Context) {
	if g == nil || g.grant == nil {
		return
	}
	g.releaseOnce.Do(func() {
		logger.Tracef(ctx, "releasing the scoped access grant")
		g.grant.Release()
	})
}

// session holds the state of a single Convert invocation. A session is
// created in Convert and lives until the Converter returns to idle.
type session struct {
	id              uuid.UUID
	sourcePath      string
	destinationPath string

	demuxer media.Demuxer
	muxer   media.Muxer

	sourceGrant scopedGrant
	destGrant   scopedGrant

	cancelToken *cancelToken

	audioRequired bool
	startedAt     time.Time
	totalFrames   uint64

	leftRegion  image.Rectangle
	rightRegion image.Rectangle

	framesProcessed atomic.Uint64
	timeRemaining   atomic.Duration

	// completion flags, guarded by the Converter's locker
	videoDone bool
	audioDone bool

	finishOnce sync.Once
	finishedCh chan struct{}
}

func newSession(sourcePath, destinationPath string) *session {
	return &session{
		id:              uuid.New(),
		sourcePath:      sourcePath,
		destinationPath: destinationPath,
		cancelToken:     newCancelToken(),
		finishedCh:      make(chan struct{}),
	}
}

func (s *session) finish(ctx context.Context) {
	s.finishOnce.Do(func() {
		logger.Debugf(ctx, "both streams are complete, signaling the finish")
		close(s.finishedCh)
	})
}

func (s *session) isFinished() bool {
	select {
	case <-s.finishedCh:
		return true
	default:
		return false
	}
}
