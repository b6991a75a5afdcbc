// Package classifier trains and serves the iris species model.
//
// A Model is trained once from a Dataset at process start and is immutable
// afterwards: Predict only reads the fitted parameters, so a single *Model
// can be shared by any number of concurrent requests without locking.
//
// # Model
//
// The model is multinomial logistic regression with an L2 penalty. Inputs
// are standardized with the training set's per-feature mean and standard
// deviation, then fitted by full-batch gradient descent starting from zero
// weights. There is no randomness anywhere in training, so the same data and
// options always produce the same parameters and the same predictions.
//
// # Dataset
//
// The bundled dataset is the 150-sample iris data (4 measurements in
// centimetres, 3 species). Alternative data can be loaded from any CSV with
// four numeric columns followed by a label column and a header row.
package classifier
