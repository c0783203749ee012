// Package weightedvoting implements weighted-quorum decisions inside the
// governance context.
//
// Voters belong to classes (human, company, ai) that each hold a nominal
// share of voting power. A tally renormalizes those shares over the classes
// that actually voted and splits each class share evenly among its voters;
// a decision compares the up fraction against the level threshold (standard
// 0.60, important 0.90) and stores one outcome per proposal. Vote and
// decision changes leave the service through outbox-backed events.
package weightedvoting
