package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/autoconfig"
	"github.com/specialistvlad/modenv/internal/copystrategy"
	"github.com/specialistvlad/modenv/internal/envctx"
	"github.com/specialistvlad/modenv/internal/envswitch"
	"github.com/specialistvlad/modenv/internal/prefab"
	"github.com/specialistvlad/modenv/internal/record"
	"github.com/specialistvlad/modenv/internal/typehandler"
)

// Inspect writes a report of the registries currently published in the
// execution context.
func (a *App) Inspect(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	gen, ok := envctx.Get[envswitch.Generation](a.env)
	if !ok {
		fmt.Fprintln(tw, "no environment has been entered")
		return tw.Flush()
	}
	fmt.Fprintf(tw, "generation\t%d\t%s\t%s\n", gen.Sequence, gen.Kind, gen.ID)
	fmt.Fprintf(tw, "modules\t%s\n", strings.Join(gen.Modules, " "))

	if comps, ok := envctx.Get[*record.ComponentLibrary](a.env); ok {
		fmt.Fprintf(tw, "\ncomponents\t%d\n", comps.Len())
		for _, m := range comps.All() {
			fmt.Fprintf(tw, "  %s\t%s\t%d fields\n", m.URN, m.Descriptor.Name, len(m.Fields))
		}
	}
	if events, ok := envctx.Get[*record.EventLibrary](a.env); ok {
		fmt.Fprintf(tw, "\nevents\t%d\n", events.Len())
		for _, m := range events.All() {
			fmt.Fprintf(tw, "  %s\t%s\n", m.URN, m.Descriptor.Name)
		}
	}
	if handlers, ok := envctx.Get[*typehandler.Library](a.env); ok {
		handled := handlers.HandledTypes()
		fmt.Fprintf(tw, "\ntype handlers\t%d\t%d factories\n", len(handled), len(handlers.Factories()))
		for _, t := range handled {
			h, _ := handlers.DirectHandler(t)
			fmt.Fprintf(tw, "  %s\t%T\n", t, typehandler.Unwrap(h))
		}
	}
	if copies, ok := envctx.Get[*copystrategy.Library](a.env); ok {
		fmt.Fprintf(tw, "\ncopy strategies\t%d\n", len(copies.Types()))
	}
	if store, ok := envctx.Get[*autoconfig.Store](a.env); ok {
		entries := store.Entries()
		fmt.Fprintf(tw, "\nconfigs\t%d\n", len(entries))
		for _, e := range entries {
			source := e.Path
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(tw, "  %s/%s\t%s\n", e.Module, e.Name, source)
		}
	}

	base, delta := a.switcher.Installed()
	fmt.Fprintf(tw, "\nprefab formats\tbase=%t\tdelta=%t\n", base != nil, delta != nil)
	if assets, ok := envctx.Get[*asset.Manager](a.env); ok {
		prefabs := assets.Assets(prefab.Kind)
		fmt.Fprintf(tw, "prefabs\t%d\n", len(prefabs))
		for _, p := range prefabs {
			data, _ := p.Data.(*prefab.Prefab)
			if data == nil {
				continue
			}
			var names []string
			for _, id := range data.Components() {
				names = append(names, id.String())
			}
			fmt.Fprintf(tw, "  %s\t%s\n", p.URN, strings.Join(names, ", "))
		}
	}
	return tw.Flush()
}
