package engine

import (
	"go-loopcore/debug"
	"go-loopcore/model"
	"go-loopcore/scalar"
)

// Cloner is implemented by processors that can be duplicated when their
// channel is cloned.
type Cloner interface {
	Clone() model.Processor
}

// AddPlugin appends a plugin to a channel's chain. params become the
// plugin's live parameter cells.
func (e *Engine) AddPlugin(chID model.ID, name string, proc model.Processor, params []scalar.Float32) (model.ID, error) {
	if proc == nil {
		return 0, invalid("plugin has no processor")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p := &model.Plugin{ID: e.newID(), Name: name, Params: params, Proc: proc}
	err := e.swap(func(g *model.Generation) ([]func(), error) {
		ch := g.Edit(chID)
		if ch == nil {
			return nil, notFound("channel", chID)
		}
		ch.Plugins = append(ch.Plugins, p)
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	debug.Log("plugin", "added %q (%d) to channel %d", name, p.ID, chID)
	return p.ID, nil
}

// SwapPlugins exchanges the positions of two plugins in a chain.
func (e *Engine) SwapPlugins(chID, a, b model.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.swap(func(g *model.Generation) ([]func(), error) {
		ch := g.Edit(chID)
		if ch == nil {
			return nil, notFound("channel", chID)
		}
		i, j := ch.FindPlugin(a), ch.FindPlugin(b)
		if i < 0 {
			return nil, notFound("plugin", a)
		}
		if j < 0 {
			return nil, notFound("plugin", b)
		}
		ch.Plugins[i], ch.Plugins[j] = ch.Plugins[j], ch.Plugins[i]
		return nil, nil
	})
}

// FreePlugin removes a plugin. Its processor is closed after the audio
// thread stopped using it.
func (e *Engine) FreePlugin(chID, pluginID model.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.swap(func(g *model.Generation) ([]func(), error) {
		ch := g.Edit(chID)
		if ch == nil {
			return nil, notFound("channel", chID)
		}
		i := ch.FindPlugin(pluginID)
		if i < 0 {
			return nil, notFound("plugin", pluginID)
		}
		p := ch.Plugins[i]
		ch.Plugins = append(ch.Plugins[:i], ch.Plugins[i+1:]...)
		return []func(){closePlugin(p)}, nil
	})
}

// SetPluginParam updates one parameter without a swap.
func (e *Engine) SetPluginParam(chID, pluginID model.ID, index int, v float32) error {
	return e.plugin(chID, pluginID, func(p *model.Plugin) error {
		if index < 0 || index >= len(p.Params) {
			return invalid("parameter index out of range")
		}
		p.Params[index].Store(v)
		return nil
	})
}

// TogglePluginBypass flips the bypass flag without a swap.
func (e *Engine) TogglePluginBypass(chID, pluginID model.ID) error {
	return e.plugin(chID, pluginID, func(p *model.Plugin) error {
		p.Bypass.Store(!p.Bypass.Load())
		return nil
	})
}

func (e *Engine) plugin(chID, pluginID model.ID, fn func(p *model.Plugin) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ch := e.store.Get().Find(chID)
	if ch == nil {
		return notFound("channel", chID)
	}
	i := ch.FindPlugin(pluginID)
	if i < 0 {
		return notFound("plugin", pluginID)
	}
	return fn(ch.Plugins[i])
}

func (e *Engine) clonePlugin(p *model.Plugin) *model.Plugin {
	c, ok := p.Proc.(Cloner)
	if !ok {
		return nil
	}
	params := make([]scalar.Float32, len(p.Params))
	for i := range p.Params {
		params[i].Store(p.Params[i].Load())
	}
	cp := &model.Plugin{ID: e.newID(), Name: p.Name, Params: params, Proc: c.Clone()}
	cp.Bypass.Store(p.Bypass.Load())
	return cp
}
