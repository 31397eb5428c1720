package opt

import "go.uber.org/zap"

// Progress is reported after every optimizer iteration.
type Progress struct {
	Iteration  int     `json:"iteration"`
	Cost       float64 `json:"cost"`
	BestCost   float64 `json:"bestCost"`
	Unassigned int     `json:"unassigned"`
	Move       string  `json:"move,omitempty"`
}

type options struct {
	log      *zap.Logger
	progress func(Progress)
}

// Option customises Build, Optimize and the Solve helpers.
type Option func(*options)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithProgress registers a callback invoked once per optimizer iteration on the
// searching goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(o *options) { o.progress = fn }
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
