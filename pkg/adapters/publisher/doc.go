// Package publisher provides Publisher implementations.
//
// The factory creates a publisher based on provider configuration:
//   - webhook: posts each item to the platform endpoint over HTTP
//   - log: dry run, only logs the items
//
// Local attachment files can be staged to S3-compatible object storage
// before a webhook publish; staged objects of a failed item are removed by
// the publisher's Cleanup.
package publisher
