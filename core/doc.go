// Package core holds the BDPay client, its configuration, the transaction
// domain model and the contracts that storage, transport and webhook
// packages implement. Adapter packages depend on core; core depends only on
// the security package for key handling and signing.
package core
