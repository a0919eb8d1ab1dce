package preview

import (
	"netcamera/pkg/utils"
)

var logger = utils.GetLogger()
