// Package files locates and checks pillar score tables on disk.
//
// Discovery lists the CSV and Excel tables in a directory and picks the most
// recently modified one, which is what the report command estimates when no
// input is named. ValidateTable rejects missing, empty, temporary or
// unsupported files before they reach the parser.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.DataDir)
//	latest, ok, err := discovery.LatestTable("")
//	if err != nil || !ok {
//	    // nothing to estimate
//	}
//	if err := files.ValidateTable(latest.Path); err != nil {
//	    return err
//	}
package files
