package schedule

import "time"

// Options holds settings shared by schedule construction and loading.
type Options struct {
	// Location is used by ContainsNow and to interpret timestamps that carry
	// no zone. Defaults to time.Local.
	Location *time.Location
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// WithLocation sets the schedule location. A nil loc is ignored.
func WithLocation(loc *time.Location) Option {
	return optionFunc(func(o *Options) {
		if loc != nil {
			o.Location = loc
		}
	})
}

func newOptions(opts []Option) Options {
	o := Options{Location: time.Local}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(&o)
		}
	}
	return o
}
