// Package model defines the core data structures shared by the discovery
// engine, the report writers and the run history.
//
// # Types
//
//   - ClientProfile: the identity being searched for (immutable)
//   - BrokerSite: one configured data-broker website
//   - BrokerResult: the found/not-found outcome for one broker
//   - DiscoveryRun: a profile plus the ordered results of one run
//
// BrokerResult converts to and from a flat string mapping (ToMap /
// BrokerResultFromMap) so that persistence collaborators such as the CSV
// writer can store it without knowing its Go shape.
package model
