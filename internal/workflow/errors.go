package workflow

import "errors"

var errNoRecommendations = errors.New("recommendation stage returned no recommendations")
