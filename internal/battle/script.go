package battle

// ScriptContext is what a scripted action observes when it runs.
type ScriptContext struct {
	Caster UnitView
	Target UnitView
	Vars   Vars
	Args   Vars
	Round  int
}

// ScriptHost runs scripted actions. A script receives the current context
// and returns an effect of the same shape as built-in effects; it must not
// hold on to the context.
type ScriptHost interface {
	Resolve(name string, ctx ScriptContext) (Effect, error)
}

// ScriptLister is implemented by script hosts that can report which scripts
// they know, letting content validation catch missing ones early.
type ScriptLister interface {
	HasScript(name string) bool
}
