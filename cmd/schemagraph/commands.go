package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bayleafwalker/schemagraph/digest"
	"github.com/bayleafwalker/schemagraph/engine"
	"github.com/bayleafwalker/schemagraph/internal/resolver"
	"github.com/bayleafwalker/schemagraph/schema"
	"github.com/bayleafwalker/schemagraph/snapshot"
)

var errUnresolvedSlots = errors.New("required slots have no candidate operative")

func (a *app) validateCommand() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate SCHEMA",
		Short: "Build a schema document and report slots no operative can fill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadSchema(args[0])
			if err != nil {
				return err
			}
			plan, err := resolver.NewDefault().Resolve(cmd.Context(), resolver.Input{Schema: s})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "schema %s: %d templates, %d traits, %d operatives, %d library instances\n",
				s.Revision(), len(s.Templates()), len(s.Traits()), len(s.Operatives()), len(s.LibraryInstances()))
			for _, w := range s.Warnings() {
				fmt.Fprintf(a.out, "warning: %s\n", w)
			}
			for _, u := range plan.Diagnostics.UnresolvedRequired {
				fmt.Fprintf(a.out, "unresolved required slot %s.%s: %s\n", u.Operative.Name, u.Slot.Name, u.Reason)
			}
			for _, u := range plan.Diagnostics.UnresolvedOptional {
				fmt.Fprintf(a.out, "unresolved optional slot %s.%s: %s\n", u.Operative.Name, u.Slot.Name, u.Reason)
			}
			if strict && len(plan.Diagnostics.UnresolvedRequired) > 0 {
				return withCode(exitSchemaInvalid, errUnresolvedSlots)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a required slot has no candidate operative.")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import SCHEMA SNAPSHOT",
		Short: "Check that a snapshot is a valid instance graph of a schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.importSnapshot(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "imported %d instances\n", e.Len())
			return nil
		},
	}
}

func (a *app) normalizeCommand() *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "normalize SCHEMA SNAPSHOT",
		Short: "Import a snapshot and write it back in canonical form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			e, err := a.importSnapshot(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			data, err := e.Export(f)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = a.out.Write(data)
				return withCode(exitIO, err)
			}
			return withCode(exitIO, os.WriteFile(output, data, 0o644))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout.")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json.")
	return cmd
}

func parseFormat(raw string) (snapshot.Format, error) {
	switch raw {
	case "yaml":
		return snapshot.FormatYAML, nil
	case "json":
		return snapshot.FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown format %q", raw)
}

func (a *app) digestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "digest SCHEMA SNAPSHOT [INSTANCE...]",
		Short: "Print the effective fields and slots of instances",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.importSnapshot(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			var ids []schema.Uid
			for _, raw := range args[2:] {
				id, err := schema.ParseUid(raw)
				if err != nil {
					return fmt.Errorf("instance %q: %w", raw, err)
				}
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				for _, inst := range e.Instances() {
					ids = append(ids, inst.ID)
				}
			}

			views := make([]digestView, 0, len(ids))
			for _, id := range ids {
				d, err := e.Digest(id)
				if err != nil {
					return err
				}
				views = append(views, newDigestView(e, d))
			}
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(views); err != nil {
				return withCode(exitIO, err)
			}
			return withCode(exitIO, enc.Close())
		},
	}
}

type digestView struct {
	Instance  string      `yaml:"instance"`
	Operative string      `yaml:"operative"`
	Fulfilled bool        `yaml:"fulfilled"`
	Fields    []fieldView `yaml:"fields,omitempty"`
	Slots     []slotView  `yaml:"slots,omitempty"`
}

type fieldView struct {
	Name     string `yaml:"name"`
	Value    string `yaml:"value"`
	LockedBy string `yaml:"lockedBy"`
	Implicit bool   `yaml:"implicit,omitempty"`
}

type slotView struct {
	Name       string        `yaml:"name"`
	Descriptor string        `yaml:"descriptor"`
	Bounds     string        `yaml:"bounds"`
	Related    []relatedView `yaml:"related,omitempty"`
}

type relatedView struct {
	ID       string `yaml:"id"`
	HostedBy string `yaml:"hostedBy"`
}

func newDigestView(e *engine.Engine, d digest.InstanceDigest) digestView {
	s := e.Schema()
	check := digest.Check(d)
	v := digestView{
		Instance:  d.Instance.String(),
		Operative: elementName(s, d.Operative),
		Fulfilled: check.OK(),
	}
	for _, f := range d.Fields {
		v.Fields = append(v.Fields, fieldView{
			Name:     f.Field.Tag.Name,
			Value:    f.Value.String(),
			LockedBy: elementName(s, f.HostingElement),
			Implicit: f.Implicit,
		})
	}
	for _, slot := range d.Slots {
		sv := slotView{Name: slot.Slot.Tag.Name, Descriptor: fmt.Sprint(slot.Descriptor), Bounds: slot.Bounds.String()}
		for _, r := range slot.Related {
			sv.Related = append(sv.Related, relatedView{ID: r.ID.String(), HostedBy: elementName(s, r.HostingElement)})
		}
		v.Slots = append(v.Slots, sv)
	}
	return v
}

// elementName prefers the name of a template or operative over its id.
func elementName(s *schema.Schema, id schema.Uid) string {
	if op, ok := s.Operative(id); ok && op.Tag.Name != "" {
		return op.Tag.Name
	}
	if t, ok := s.Template(id); ok && t.Tag.Name != "" {
		return t.Tag.Name
	}
	return id.String()
}
