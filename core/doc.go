// Package core defines the domain model for the yeti threat-intelligence admin layer.
//
// # Overview
//
// The core package provides:
//   - Entity records and their variants (TTP with its kill-chain classification)
//   - Groups, users and the request principal
//   - The group authorization predicate shared by every group endpoint
//   - Sentinel errors and validation errors understood by the API layer
//
// Everything here is pure: no storage, no HTTP. Storage lives in package
// storage, orchestration in package service and transport in package api.
//
// # Authorization
//
// The acting principal is always passed explicitly:
//
//	if !core.CanManageGroup(principal, group) {
//	    return core.ErrForbidden
//	}
package core
