// Package split models item id splits: an EVE type id that is retired in favour of
// a new id, with a conversion rate between the two.
//
// A Record describes one split and converts archive-side (original id) values into
// live-side (new id) units. A Registry maps both ids of every split to the same
// Record so lookups work from either side.
//
// Split config file format (JSON array):
//
//	[{
//	    "type_id": 29668, "type_name": "PLEX",
//	    "original_id": 29668, "new_id": 44992,
//	    "split_date": "2017-06-20",
//	    "bool_mult_div": "False",
//	    "split_rate": 500
//	}]
package split
