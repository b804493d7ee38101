package metrics

// Prefix for all metrics exposed by swarmbench.
const Prefix = "swarmbench_"
