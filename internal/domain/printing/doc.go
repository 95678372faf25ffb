// Package printing contains the Printing bounded context for loading orders
// ("ordem de carregamento"). It models the dialog session that turns a set of
// invoice records into one of two printable manifests, and the outcome of
// handing that manifest to a secondary print context.
package printing
