// Package manifest loads YAML manifests describing a compilation unit:
// the engine configuration (recognized effects, workers, ABI
// compatibility range, externs) and the annotated declarations.
//
//	config:
//	  compat: ">= 1.0.0"
//	declarations:
//	  - type: File
//	    maybe: "#[maybe(async)]"
//	    fields:
//	      - name: waker
//	        type: u64
//	        cfg: "#[cfg(effect = async)]"
//
// Every annotation string is parsed with the syntax package; spans point
// at the YAML node that carried it.
package manifest
