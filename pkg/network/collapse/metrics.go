package collapse

import "github.com/matzehuels/flowtrim/pkg/network"

// Annotate recomputes the derived columns of every row from the current
// topology: num_upstream, ds_num_upstream and dsLENGTHKM. Removed rows get
// zeros.
func Annotate(t *network.Table) {
	idx := network.NewIndex(t)
	for _, s := range t.Segments() {
		s.NumUpstream, s.DSNumUpstream, s.DSLengthKM = 0, 0, 0
		if s.Removed() {
			continue
		}
		s.NumUpstream = idx.NumUpstream(s.COMID)
		ds := idx.Downstream(s.COMID)
		if d, ok := t.Get(ds); ok {
			s.DSNumUpstream = idx.NumUpstream(ds)
			s.DSLengthKM = d.LengthKM
		}
	}
}
