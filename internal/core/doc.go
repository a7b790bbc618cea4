// Package core provides the bulk import pipeline for inventory items.
//
// The package holds all domain logic independent of any transport. It is
// used by the HTTP handlers and by the inventoryctl command without
// modification.
//
// # Pipeline
//
//  1. [ParseUpload] enforces the size and row ceilings and turns an .xlsx or
//     .csv workbook into [ImportRow] values, using the first row as headers.
//  2. [RowValidator] applies the rule set to each row, producing a
//     [ValidationOutcome] of blocking errors and non-blocking warnings. A
//     [SeenKeySet] catches serials and tags repeated within the file.
//  3. [Aggregate] folds the outcomes into an [ImportReport].
//  4. [Service.Preview] caches the rows under a token; [Service.Confirm]
//     re-validates them and commits every row or none inside one store
//     transaction.
//
// # Categories
//
// Categories (areas) are registered with [RegisterCategory]. A category
// names its item code prefix and, optionally, an [ExtraSchema] whose fields
// are staged alongside each item:
//
//	core.RegisterCategory(core.Category{
//	    Code:   "sistemas",
//	    Prefix: "SIS",
//	    Extras: core.TechnicalSpecs{},
//	})
//
// # Error Handling
//
// File-level problems and permission failures are returned as errors
// wrapping the sentinels in errors.go. Row problems never fail a call; they
// are reported inside the ImportReport. A commit that meets rejected rows
// returns a [*RejectedError] carrying the report.
//
// [MapError] turns any error into a coded user message:
//
//   - FILE001-FILE007: file errors (size, format, headers, rows)
//   - IMP001-IMP005: import flow errors (rejected, expired, busy)
//   - AUTH001: permission denied
//   - REQ001-REQ002: cancelled or timed out requests
//   - DB001, DB003-DB007: database errors
//
// # Audit
//
// Each commit records one import_commit entry inside the same transaction,
// attributed to the requester with IP address and user agent taken from
// the context.
package core
