// Package io reads and writes network tables as CSV or JSON.
//
// # CSV Format
//
// The first line is a header. COMID, toCOMID, LENGTHKM and TotDASqKM are
// required; column order is free and unknown columns are ignored:
//
//	COMID,toCOMID,LENGTHKM,TotDASqKM
//	101,102,0.5,1.2
//	102,103,5,3.4
//	103,,5,7.9
//
// An empty toCOMID, "NA" or 0 means the segment has no downstream
// neighbour. The optional columns joined_toCOMID, joined_fromCOMID,
// num_upstream, ds_num_upstream, dsLENGTHKM and category are read when
// present, so a collapsed table can be read back.
//
// # JSON Format
//
// A single object with a "segments" array using the same field names:
//
//	{
//	  "segments": [
//	    {"COMID": 101, "toCOMID": 102, "LENGTHKM": 0.5, "TotDASqKM": 1.2}
//	  ]
//	}
//
// # Files
//
// [Import] and [Export] pick the codec from the file extension (.csv or
// .json). [WriteMembersCSV] writes the survivor/member provenance mapping
// produced by a collapse run.
//
// Readers build an independent [network.Table]; nothing is shared with the
// source reader.
package io
