package eventstore

import (
	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
)

// Sentinel errors for journal operations. Use errors.Is to match them.
var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.NewError(errors.CategoryJournal, "could not open journal database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.NewError(errors.CategoryJournal, "failed to initialize journal schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.NewError(errors.CategoryJournal, "failed to append event to journal").Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.NewError(errors.CategoryJournal, "failed to query events from journal").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of event payload failed.
	ErrMarshalPayloadFailed = errors.NewError(errors.CategoryJournal, "failed to marshal event payload").Build()
)
