/*
Package script loads fleet declarations from YAML.

A script file has two top-level lists:

	hosts:
	  - name: worker-1
	    domain: 10.0.0.5
	    port: 7000
	    file_server_port: 7001
	    max_capacity: 16
	experiments:
	  - name: sweep-a
	    outdir: /data/sweep-a
	    jobs:
	      - id: run-0
	        command: ./run.sh --seed 0
	        demand: 4

Both lists deduplicate by name, keeping the first occurrence in file
order and discarding the rest; Load returns an error only for a
malformed document, never for a duplicate, matching the operator
console's policy of warning rather than aborting on a name collision.
*/
package script
