// package services holds the external collaborators of the download pipeline:
// the fetch service client, the session credential manager, the token issuer,
// and the catalog metadata source.
package services
