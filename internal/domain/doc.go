// Package domain contains the core concepts of page conversion: page
// selections, document handles, per-page outcomes and the error taxonomy.
// Keep this package free of transport (HTTP) and infrastructure (Redis, MuPDF) concerns.
package domain
