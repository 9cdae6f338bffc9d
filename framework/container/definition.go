package container

// DefinitionBuilder implements the fluent definition API.
//
//	c.Define("mailer").
//	    Uses(mail.NewSMTP).
//	    WithArguments("config", 25).
//	    Shared().
//	    Register()
type DefinitionBuilder struct {
	container *Container
	id        string
	target    any
	args      []any
	shared    bool
}

// Define starts a definition for id. Without Uses, the target is id itself.
func (c *Container) Define(id string) *DefinitionBuilder {
	return &DefinitionBuilder{container: c, id: id}
}

// Uses sets the callable or class identifier that builds the value.
func (b *DefinitionBuilder) Uses(target any) *DefinitionBuilder {
	b.target = target
	return b
}

// WithArguments sets the arguments passed to the target. Strings naming a
// known identifier are resolved when the value is built.
func (b *DefinitionBuilder) WithArguments(args ...any) *DefinitionBuilder {
	b.args = append(b.args, args...)
	return b
}

// Shared marks the definition as shared.
func (b *DefinitionBuilder) Shared() *DefinitionBuilder {
	b.shared = true
	return b
}

// Register binds the definition into the container.
func (b *DefinitionBuilder) Register() {
	target := b.target
	if target == nil {
		target = b.id
	}
	concrete := target
	if len(b.args) > 0 {
		concrete = append([]any{target}, b.args...)
	}
	b.container.bind(b.id, concrete, b.shared)
}
