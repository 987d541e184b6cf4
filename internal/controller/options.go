// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/jvm-stacks/internal/controller"

import "go.opentelemetry.io/jvm-stacks/jvmti"

type Option interface {
	applyOption(*Controller) *Controller
}
type controllerOptionFunc func(*Controller) *Controller

func (f controllerOptionFunc) applyOption(c *Controller) *Controller {
	return f(c)
}

// WithRuntime samples rt instead of the goroutines of the current process.
// self, if set, returns the thread the sampler runs on.
func WithRuntime(rt jvmti.Runtime, self func() jvmti.Thread) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.runtime = rt
		c.self = self
		return c
	})
}
