package module

import "strings"

// Tag is a capability marker attached to a declared type.
type Tag uint16

const (
	// Component marks a state record type.
	Component Tag = 1 << iota
	// Event marks a one-shot event record type.
	Event
	// TypeHandler marks a serialization handler to register for the type it handles.
	TypeHandler
	// TypeHandlerFactory marks a handler factory to append to the factory chain.
	TypeHandlerFactory
	// CopyConstructible marks a value type that wants copy-constructor semantics.
	CopyConstructible
	// AutoConfig marks a configuration type loaded per module on a full switch.
	AutoConfig
	// DoNotAutoRegister opts a type out of automatic registration.
	DoNotAutoRegister
)

var tagNames = []struct {
	tag  Tag
	name string
}{
	{Component, "component"},
	{Event, "event"},
	{TypeHandler, "type_handler"},
	{TypeHandlerFactory, "type_handler_factory"},
	{CopyConstructible, "copy_constructible"},
	{AutoConfig, "auto_config"},
	{DoNotAutoRegister, "do_not_auto_register"},
}

// Has reports whether all bits of o are set in t.
func (t Tag) Has(o Tag) bool {
	return o != 0 && t&o == o
}

func (t Tag) String() string {
	var parts []string
	for _, tn := range tagNames {
		if t.Has(tn.tag) {
			parts = append(parts, tn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
