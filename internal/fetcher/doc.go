// Package fetcher performs the HTTP GETs behind every extractor.
//
// Pages go through an injected httpcache.Cache so repeated runs are served
// locally. A transport failure is reported as a nil *Response after it has been
// logged: the caller skips that page and continues. Archive payloads use
// Download, which always goes to the network.
package fetcher
