// Package upstream talks to the cataloging service that publishes authority
// and bibliographic change feeds.
//
// Update feeds are paginated MARCXML documents whose first root child holds
// the next page URL. Deletion feeds are JSON documents listing deleted record
// ids under the resource name with a nextPage field. Requests are paced with a
// token bucket and retried with exponential backoff on 408, 429, 5xx and
// network timeouts, honouring Retry-After.
package upstream
