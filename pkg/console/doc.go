/*
Package console implements the operator's line-oriented shell, read
from stdin alongside the scheduling loop:

	process <script>     load hosts and experiments from a YAML script
	p <script>            alias for process
	list experiment       print experiment names by lifecycle state
	list host              print host names by lifecycle state
	l <kind>               alias for list
	kill experiment <name> retire an experiment
	kill host <name>       retire a host
	k <kind> <name>        alias for kill
	stop                   stop the scheduler and exit the console

Run waits startDelay before printing its first prompt, so the
scheduler and dashboard's own startup log lines don't interleave with
it. A malformed line prints its error and prompts again; it never
terminates the console, only "stop" or a closed input stream does.
*/
package console
