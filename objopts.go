package rtkernel

// objOptions configures the handful of fields the ObjOption-taking object
// constructors (NewTimer, NewSem, NewFlag, ...) share: a diagnostic tag and
// static-vs-dynamic ownership bookkeeping. NewMutex takes MutexOption
// instead.
type objOptions struct {
	tag       string
	ownership ownership
}

// ObjOption configures a kernel object at construction time.
type ObjOption interface{ applyObj(*objOptions) }

type objOptionFunc func(*objOptions)

func (f objOptionFunc) applyObj(o *objOptions) { f(o) }

// WithTag sets the object's diagnostic tag, used only in log lines.
func WithTag(tag string) ObjOption {
	return objOptionFunc(func(o *objOptions) { o.tag = tag })
}

func resolveObjOptions(opts []ObjOption) *objOptions {
	cfg := &objOptions{ownership: ownDynamic}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyObj(cfg)
	}
	return cfg
}
