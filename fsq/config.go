package fsq

// Config is the engine's configuration record: a plain record of policy
// objects, not a monolithic god-config, so each concern (naming, clock,
// filesystem, append, finalize, purge, retry) can be swapped
// independently.
type Config struct {
	// WorkingDirectory is the directory this Engine exclusively manages.
	// Required.
	WorkingDirectory string

	FileSystem FileSystem
	Clock      TimeSource
	Naming     NamingScheme
	Append     AppendStrategy
	Finalize   FinalizePolicy
	Purge      PurgePolicy
	Retry      RetryPolicy
	Processor  Processor

	// DetachProcessingThreadOnTermination lets Shutdown return without
	// joining the processor goroutine.
	DetachProcessingThreadOnTermination bool
	// ThrowOnPushWhileShuttingDown makes PushMessage return
	// ErrShuttingDown once shutdown has begun. The zero value (false)
	// silently drops the message instead; this field is phrased as the
	// opposite polarity so Go's zero value is the safe default without a
	// separate "was this ever set" flag.
	ThrowOnPushWhileShuttingDown bool
	// ProcessQueueToTheEndOnShutdown keeps the processor loop alive on
	// Shutdown until the finalized backlog is empty or the processor
	// returns Unavailable.
	ProcessQueueToTheEndOnShutdown bool

	// Init, if set, runs exactly once at construction time, before the
	// startup recovery scan and before the processor thread starts. An
	// error from Init aborts New.
	Init func(*Engine) error
}

func (c *Config) applyDefaults() {
	if c.FileSystem == nil {
		c.FileSystem = OSFileSystem{}
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Naming == nil {
		c.Naming = DefaultNaming{}
	}
	if c.Append == nil {
		c.Append = RawAppend{}
	}
	if c.Finalize == nil {
		c.Finalize = BacklogAwareFinalize{
			RealtimeMaxSize: 4 << 20,
			BacklogMaxSize:  64 << 20,
		}
	}
	if c.Purge == nil {
		c.Purge = NoPurge{}
	}
	if c.Retry == nil {
		c.Retry = NewExponentialBackoff(500, 100, 30000)
	}
}
