// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller runs the stack sampler.
package controller // import "go.opentelemetry.io/jvm-stacks/internal/controller"

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/jvm-stacks/agent"
	"go.opentelemetry.io/jvm-stacks/goruntime"
	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/metrics"
	"go.opentelemetry.io/jvm-stacks/packedbuf"
	"go.opentelemetry.io/jvm-stacks/periodiccaller"
	"go.opentelemetry.io/jvm-stacks/threadstatus"
)

var errNotStarted = errors.New("controller not started")

// Round summarizes one sampling round.
type Round struct {
	Threads int
	Frames  int
	// Methods is the number of distinct methods seen in the round.
	Methods      int
	Placeholders int
	ByStatus     map[threadstatus.Status]int
	// SelfDepth is the depth of the sampler's own stack, or -1 if unknown.
	SelfDepth int
}

// Controller is an instance that runs, manages and stops the sampler.
type Controller struct {
	config  *Config
	runtime jvmti.Runtime
	self    func() jvmti.Thread
	session uuid.UUID

	// mu serializes rounds and guards the fields below.
	mu          sync.Mutex
	stacks      *agent.Stacks
	rounds      int
	lastProfile *profile.Profile

	trigger chan struct{}
	stop    func()
}

// New creates a new controller
func New(cfg *Config, opts ...Option) *Controller {
	c := &Controller{
		config:  cfg,
		session: uuid.New(),
		trigger: make(chan struct{}),
	}
	for _, opt := range opts {
		c = opt.applyOption(c)
	}
	return c
}

// Session identifies this controller in log output.
func (c *Controller) Session() uuid.UUID {
	return c.session
}

// Start starts the controller
// The controller should only be started once.
func (c *Controller) Start(ctx context.Context) error {
	if c.config == nil {
		return errors.New("missing configuration")
	}
	if err := c.config.Validate(); err != nil {
		// Same exit code as a flag parsing failure.
		return NewErrorWithExitCode(fmt.Errorf("invalid configuration: %w", err), 2)
	}

	if c.runtime == nil {
		rt := goruntime.New()
		c.runtime = rt
		c.self = rt.CurrentThread
	}

	stacks, err := agent.New(c.runtime, agent.Config{
		MaxFrames:         c.config.MaxFrames,
		MetadataCacheSize: uint32(c.config.MetadataCacheSize),
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	stacks.CreateFrameBuffer(c.config.BufferFrames)

	c.mu.Lock()
	c.stacks = stacks
	c.mu.Unlock()

	c.stop = periodiccaller.Start(ctx, c.config.SampleInterval, c.config.Jitter, c.trigger,
		func(manual bool) {
			if _, err := c.Sample(manual); err != nil && !errors.Is(err, errNotStarted) {
				c.logger().Errorf("Sampling round failed: %v", err)
			}
		})

	c.logger().Infof("Sampling every %v (jitter %.2f)",
		c.config.SampleInterval, c.config.Jitter)
	return nil
}

// Trigger requests an immediate round. It blocks until the sampler accepts
// the request and returns false if ctx is done first.
func (c *Controller) Trigger(ctx context.Context) bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) logger() *log.Entry {
	return log.WithField("session", c.session.String())
}

// Sample runs one round: all threads are captured, every distinct method is
// resolved and a summary is logged.
func (c *Controller) Sample(manual bool) (Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stacks == nil {
		return Round{}, errNotStarted
	}
	c.rounds++
	logger := c.logger().WithFields(log.Fields{"round": c.rounds, "manual": manual})

	round := Round{SelfDepth: -1, ByStatus: make(map[threadstatus.Status]int)}
	if c.self != nil {
		self := c.self()
		round.SelfDepth = c.stacks.CurrentStackDepth(self)
		ids := make([]methodid.CompactID, c.config.BufferFrames)
		n := c.stacks.CurrentStackFrameIDs(self, round.SelfDepth, ids)
		logger.Debugf("Sampler stack: %d of %d frames captured", n, round.SelfDepth)
	}

	capt := &capture{index: make(map[methodid.CompactID]int)}
	if err := c.stacks.AllStackTraces(&capt.threads, &capt.states, &capt.frames); err != nil {
		return Round{}, err
	}

	var distinct []methodid.CompactID
	for i, stack := range capt.frames {
		round.ByStatus[capt.states[i]]++
		round.Frames += len(stack)
		for _, id := range stack {
			if _, ok := capt.index[id]; !ok {
				capt.index[id] = len(distinct)
				distinct = append(distinct, id)
			}
		}
	}
	round.Threads = len(capt.threads)
	round.Methods = len(distinct)

	var err error
	capt.records, err = packedbuf.Decode(c.stacks.MethodNamesForIDs(distinct))
	if err != nil {
		return Round{}, fmt.Errorf("failed to decode method names: %w", err)
	}
	for _, rec := range capt.records {
		if rec.IsPlaceholder() {
			round.Placeholders++
		}
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		for i, stack := range capt.frames {
			top := "<empty>"
			if len(stack) > 0 {
				top = capt.records[capt.index[stack[0]]].String()
			}
			logger.Debugf("Thread %d (%v): %d frames, top %s",
				capt.threads[i], capt.states[i], len(stack), top)
		}
	}

	c.lastProfile = buildProfile(capt, time.Now(), c.config.SampleInterval)
	if c.config.ProfileDir != "" {
		name, err := writeProfile(c.config.ProfileDir, c.rounds, c.lastProfile)
		if err != nil {
			return Round{}, err
		}
		logger.Debugf("Wrote %s", name)
	}

	logger.Infof("Captured %d threads, %d frames, %d methods (%d unresolved), states %s",
		round.Threads, round.Frames, round.Methods, round.Placeholders,
		formatStatuses(round.ByStatus))
	return round, nil
}

func formatStatuses(byStatus map[threadstatus.Status]int) string {
	statuses := make([]threadstatus.Status, 0, len(byStatus))
	for s := range byStatus {
		statuses = append(statuses, s)
	}
	slices.Sort(statuses)

	out := ""
	for i, s := range statuses {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%v=%d", s, byStatus[s])
	}
	return out
}

// LastProfile returns the profile of the last successful round, or nil.
func (c *Controller) LastProfile() *profile.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProfile
}

// Shutdown stops the controller
func (c *Controller) Shutdown() {
	c.logger().Info("Stop processing ...")
	if c.stop != nil {
		c.stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stacks != nil {
		c.stacks.ClearFrameBuffer()
		c.stacks = nil
	}

	totals := metrics.Totals()
	ids := make([]metrics.MetricID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		c.logger().Infof("%s: %d", metrics.Name(id), totals[id])
	}
}
