package uievent

import "strconv"

// Signature field keys. A signature is a flat map of the comparable fields
// of one event or node; absent fields are absent keys, never empty values.
const (
	SigPackage      = "package"
	SigClass        = "className"
	SigText         = "text"
	SigDescription  = "contentDescription"
	SigViewID       = "viewId"
	SigEventType    = "eventType"
	SigClickable    = "clickable"
	SigEditable     = "editable"
	SigCheckable    = "checkable"
	SigParentClass  = "parentClassName"
	SigParentViewID = "parentViewId"
)

// Signature is the normalized comparable form of one event or node.
type Signature map[string]string

// FromEvent extracts a signature from an event. It never fails; fields the
// event does not carry are simply absent from the map.
func FromEvent(ev *Event) Signature {
	sig := Signature{}
	if ev == nil {
		return sig
	}

	putNonBlank(sig, SigPackage, ev.Package)
	putNonBlank(sig, SigClass, ev.ClassName)
	putNonBlank(sig, SigText, ev.Text)
	putNonBlank(sig, SigDescription, ev.ContentDescription)
	putNonBlank(sig, SigViewID, ev.ViewID)
	sig[SigEventType] = string(ev.Type)
	sig[SigClickable] = strconv.FormatBool(ev.Clickable)
	sig[SigEditable] = strconv.FormatBool(ev.Editable)
	sig[SigCheckable] = strconv.FormatBool(ev.Checkable)

	return sig
}

// FromNode extracts a signature from a live node, including one level of
// parent linkage. The caller keeps ownership of n; any parent handle
// acquired here is released before returning, on every path.
func FromNode(n Node, pkg string) Signature {
	sig := Signature{}
	if n == nil {
		return sig
	}

	putNonBlank(sig, SigPackage, pkg)
	putNonBlank(sig, SigClass, n.ClassName())
	putNonBlank(sig, SigText, n.Text())
	putNonBlank(sig, SigDescription, n.ContentDescription())
	putNonBlank(sig, SigViewID, n.ViewID())
	sig[SigClickable] = strconv.FormatBool(n.Clickable())
	sig[SigEditable] = strconv.FormatBool(n.Editable())
	sig[SigCheckable] = strconv.FormatBool(n.Checkable())

	// One level of parent linkage; unreadable parents are skipped.
	_ = visitParent(n, func(p Node) {
		putNonBlank(sig, SigParentClass, p.ClassName())
		putNonBlank(sig, SigParentViewID, p.ViewID())
	})

	return sig
}

func putNonBlank(sig Signature, key, value string) {
	if value != "" {
		sig[key] = value
	}
}
