// Package problem defines the RFC 7807 problem details value published by
// the query and stream engines.
//
// A Details value represents both server-reported problems (decoded from an
// application/problem+json body) and problems synthesized locally from
// transport failures, decode failures or an exhausted retry budget. Status 0
// means no HTTP status was available.
package problem
