package domain

type CacheKey string

const (
	CACHE_CURRENT_DEVICE CacheKey = "current_device"
	CACHE_DEVICE_LIST    CacheKey = "device_list"
	CACHE_DEVICE_STATUS  CacheKey = "device_status"
	CACHE_DEVICE_INFO    CacheKey = "device_info"
	CACHE_DEVICE_DETAILS CacheKey = "device_details"
	CACHE_DEVICE_ALARMS  CacheKey = "device_alarms"
)

// DeviceCacheKeys are reset whenever another device is selected.
var DeviceCacheKeys = []CacheKey{
	CACHE_DEVICE_STATUS,
	CACHE_DEVICE_INFO,
	CACHE_DEVICE_DETAILS,
	CACHE_DEVICE_ALARMS,
}

// CurrentDevice is the device selected by the dashboard panel.
type CurrentDevice struct {
	DeviceSn string `json:"device_sn"`
	DeviceId string `json:"device_id"`
}
