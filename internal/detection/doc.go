// Package detection turns images into text boxes with a segmentation model
// and estimates page skew from the model's probability map.
//
// # Pipeline
//
// Detection runs in three steps:
//
//  1. Preprocess: scale the image so its longer side fits MaxSideLength, pad
//     it at the top-left of a black canvas whose sides are multiples of 32 and
//     normalize it into a [1,3,H,W] tensor.
//  2. Inference: the model returns a per-pixel text probability map over the
//     padded canvas.
//  3. Postprocess: binarize the map, take the bounding rectangle of every
//     contour, pad it, and map it back into original-image coordinates.
//
// # Padding
//
// Both vertical and horizontal padding are fractions of the box height. Text
// lines are much wider than tall, so a width-based horizontal pad would grow
// long lines into their neighbors.
//
// # Skew Estimation
//
// SkewEstimator combines three independent measurements over the binarized
// probability map: the minimum-area rectangle of each region, a line fitted
// through the lowest points of each region, and long Hough segments. Outliers
// are removed with an interquartile-range filter and the remaining angles are
// averaged by weight.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Positive angles are clockwise as displayed
package detection
