// Package disbursementservice implements the treasury disbursement engine for tokendrip.
//
// The module reserves idle recipient identities against daily and lifetime quotas,
// schedules randomized transfers inside a rolling 24h window, submits them to the
// ledger and reconciles submitted transfers into terminal outcomes. It also owns
// the recipient pool, runtime settings and the administrative reset.
package disbursementservice
