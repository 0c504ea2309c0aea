// Package facedetect owns the detection lifecycle: lazy model initialisation,
// one inference per upload and publication of the resulting record.
package facedetect

import (
	"context"
	"image"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/detector"
)

// Loader provides the shared detector handle.
type Loader interface {
	Model() detector.Model
	Load(ctx context.Context) (detector.Model, error)
}

// Controller tracks the result record for one viewer. Several controllers may
// share a Loader and therefore one model.
type Controller struct {
	loader     Loader
	confidence float64

	mu         sync.Mutex
	result     Result
	generation uint64 // token of the most recently started detection
	version    uint64 // bumped on every publication

	events broadcaster
	now    func() time.Time
}

// NewController creates a controller. A non-positive confidence uses the default fixed value.
func NewController(loader Loader, confidence float64) *Controller {
	if confidence <= 0 || confidence > 1 {
		confidence = constants.FaceFoundConfidence
	}
	return &Controller{
		loader:     loader,
		confidence: confidence,
		now:        time.Now,
	}
}

// Result returns the current record.
func (c *Controller) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Loaded reports whether the detector handle exists.
func (c *Controller) Loaded() bool {
	return c.loader.Model() != nil
}

// Snapshot returns the current record together with the model state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{Result: c.Result(), Loaded: c.Loaded()}
}

// Subscribe returns a channel receiving every published snapshot.
func (c *Controller) Subscribe() <-chan Snapshot {
	return c.events.add()
}

// Unsubscribe stops delivery and closes ch.
func (c *Controller) Unsubscribe(ch <-chan Snapshot) {
	c.events.remove(ch)
}

// Close closes all subscriber channels.
func (c *Controller) Close() {
	c.events.closeAll()
}

// Initialize loads the detector if it is not loaded yet. It never returns an
// error: a failed load is reported through the result record.
func (c *Controller) Initialize(ctx context.Context) {
	if c.loader.Model() != nil {
		return
	}

	if _, err := c.loader.Load(ctx); err != nil {
		log.Printf("Error initializing face detection model: %v", err)
		c.publish(func(r Result) Result {
			r.Error = constants.MsgModelLoadFailed
			r.Processing = false
			return r
		})
		return
	}

	// A successful retry clears the stale load error so the banner and the
	// results card agree.
	c.publish(func(r Result) Result {
		if r.Error == constants.MsgModelLoadFailed || r.Error == constants.MsgModelUnavailable {
			r.Error = ""
		}
		return r
	})
}

// DetectFaces runs the detector on img and publishes the outcome. The model is
// loaded first if needed. Only the most recently started call may publish its
// completion; an older call that finishes late is discarded. The returned
// record is this call's own outcome. A discarded outcome has Version zero and
// carries no counts from other calls.
func (c *Controller) DetectFaces(ctx context.Context, img image.Image) Result {
	token := c.begin()

	if c.loader.Model() == nil {
		c.Initialize(ctx)
	}

	model := c.loader.Model()
	if model == nil {
		return c.settle(token, func(r Result) Result {
			r.Error = constants.MsgModelUnavailable
			r.Processing = false
			return r
		})
	}

	c.publishIfCurrent(token, func(r Result) Result {
		r.Processing = true
		r.Error = ""
		return r
	})

	start := time.Now()
	faces, err := model.EstimateFaces(ctx, img)
	if err != nil {
		log.Printf("Error detecting faces: %v", err)
		own := c.settle(token, func(r Result) Result {
			r.Error = constants.MsgDetectionFailed
			r.Processing = false
			return r
		})
		if own.Version == 0 {
			log.Printf("Discarded failed detection %d, a newer detection has started", token)
		}
		return own
	}

	own := c.settle(token, func(Result) Result {
		return newOutcome(faces, c.confidence)
	})
	if own.Version == 0 {
		log.Printf("Discarded detection %d (%d faces), a newer detection has started", token, len(faces))
		return own
	}

	log.Printf("Detection %d found %d faces in %s using %s", token, len(faces), time.Since(start).Round(time.Millisecond), model.Name())
	return own
}

// begin hands out the token for a new detection call.
func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// publishIfCurrent applies fn only if token belongs to the newest detection call.
func (c *Controller) publishIfCurrent(token uint64, fn func(Result) Result) bool {
	c.mu.Lock()
	if token != c.generation {
		c.mu.Unlock()
		return false
	}
	snap := c.applyLocked(fn)
	c.mu.Unlock()

	c.events.send(snap)
	return true
}

// settle publishes fn if token is still current and returns the published
// record. A stale token gets fn applied to an empty record, unpublished.
func (c *Controller) settle(token uint64, fn func(Result) Result) Result {
	c.mu.Lock()
	if token != c.generation {
		own := fn(Result{})
		own.HasFace = own.FaceCount > 0
		own.UpdatedAt = c.now()
		c.mu.Unlock()
		return own
	}
	snap := c.applyLocked(fn)
	c.mu.Unlock()

	c.events.send(snap)
	return snap.Result
}

// publish applies fn unconditionally.
func (c *Controller) publish(fn func(Result) Result) {
	c.mu.Lock()
	snap := c.applyLocked(fn)
	c.mu.Unlock()

	c.events.send(snap)
}

func (c *Controller) applyLocked(fn func(Result) Result) Snapshot {
	next := fn(c.result)
	next.HasFace = next.FaceCount > 0
	c.version++
	next.Version = c.version
	next.UpdatedAt = c.now()
	c.result = next
	return Snapshot{Result: next, Loaded: c.loader.Model() != nil}
}
