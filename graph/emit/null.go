package emit

// NullEmitter discards every event. It is the default when no Emitter is
// configured and an explicit no-op is clearer than a nil check at every
// call site.
type NullEmitter struct{}

func (NullEmitter) Emit(Event)        {}
func (NullEmitter) EmitBatch([]Event) {}
func (NullEmitter) Flush() error      { return nil }
