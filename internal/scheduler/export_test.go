package scheduler

const ReleaseScript = releaseScript
