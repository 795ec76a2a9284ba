package campaign

// Targeting policy enums. Values are stored in Postgres and embedded in
// webhook URLs; keep them stable.

type SegmentBy string

const (
	SegmentByLocation SegmentBy = "location"
	SegmentByCustom   SegmentBy = "custom"
)

type LocateBy string

const (
	LocateByPostal  LocateBy = "postal"
	LocateByAddress LocateBy = "address"
	LocateByLatLon  LocateBy = "latlon"
	LocateByNone    LocateBy = ""
)

type OfficePolicy string

const (
	// OfficeDistrict picks uniformly at random among a target's offices.
	OfficeDistrict OfficePolicy = "district"
	// OfficeBusiest is reserved for a least-recently-tried policy that is
	// not implemented yet; it currently behaves like OfficeDistrict.
	OfficeBusiest OfficePolicy = "busiest"
	// OfficeMain dials the target's primary number.
	OfficeMain OfficePolicy = "main"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// OrderShuffle permutes the custom target list per caller.
const OrderShuffle = "shuffle"
