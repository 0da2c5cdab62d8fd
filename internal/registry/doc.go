// Package registry loads the list of broker sites a discovery run visits.
//
// The list is a JSON or YAML document. Both are decoded with yaml.v3 since
// JSON is a subset of YAML. The document is either a top-level sequence or a
// mapping with a "brokers" sequence. Each entry is a bare display string
// ("Spokeo.com") or a record:
//
//	- name: Radaris
//	  domain: radaris.com
//	  optout_url: https://radaris.com/page/how-to-remove
//	  disabled: false
//
// Entries are normalized into model.BrokerSite values with a slug key and a
// bare domain. When the list cannot be read, or yields no usable entry,
// LoadBrokers falls back to DefaultSites.
package registry
