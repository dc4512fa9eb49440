package vision

import (
	"log"
	"time"
)

// Pipeline runs the camera loop: it pulls frames at the camera's pace,
// asks the RateController which of them deserve a detector run, and
// publishes into the Slot. Between detector runs the last detection
// outcome rides along with each fresh frame, so Slot readers always see
// the newest image with the newest known hand state.
type Pipeline struct {
	frames FrameSource
	loader *Loader
	rate   *RateController
	slot   *Slot
	fps    int

	stop chan struct{}
	done chan struct{}
}

// NewPipeline wires a frame source, a detector loader and a rate
// controller to a result slot. The pipeline owns no goroutine until Run.
func NewPipeline(frames FrameSource, loader *Loader, rate *RateController, slot *Slot, fps int) *Pipeline {
	if fps < 1 {
		fps = 15
	}
	return &Pipeline{
		frames: frames,
		loader: loader,
		rate:   rate,
		slot:   slot,
		fps:    fps,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run captures frames until Stop. It returns after the loop exits.
func (p *Pipeline) Run() {
	defer close(p.done)

	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	var (
		lastLandmarks Landmarks
		lastValid     bool
	)

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		frame, err := p.frames.NextFrame()
		if err != nil {
			log.Printf("vision: frame capture failed: %v", err)
			continue
		}

		if p.rate.Eligible() {
			if det := p.loader.Detector(); det != nil {
				lm, valid, err := det.Detect(frame)
				if err != nil {
					// Detector failure is "no hand", not a pipeline error.
					valid = false
				}
				if valid {
					lastLandmarks = lm
				} else {
					lastLandmarks = Landmarks{}
				}
				lastValid = valid
				p.rate.Observe(valid)
			}
		}

		p.slot.Publish(Result{
			Image:     frame,
			Landmarks: lastLandmarks,
			Valid:     lastValid,
		})
	}
}

// Stop ends the capture loop and waits for it to finish.
func (p *Pipeline) Stop() {
	close(p.stop)
	<-p.done
}
