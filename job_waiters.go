package main

func registerJobWaiter(jobID string) chan *Job {
	ch := make(chan *Job, 1)
	jobWaiters.Lock()
	jobWaiters.m[jobID] = append(jobWaiters.m[jobID], ch)
	jobWaiters.Unlock()
	return ch
}

func notifyJobCompletion(job *Job) {
	jobWaiters.Lock()
	waiters := jobWaiters.m[job.ID]
	delete(jobWaiters.m, job.ID)
	jobWaiters.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- job:
		default:
		}
		close(ch)
	}
}

func unregisterJobWaiter(jobID string, ch chan *Job) {
	jobWaiters.Lock()
	defer jobWaiters.Unlock()
	waiters := jobWaiters.m[jobID]
	for i, c := range waiters {
		if c == ch {
			jobWaiters.m[jobID] = append(waiters[:i], waiters[i+1:]...)
			// Close only the channel we removed; a concurrent completion
			// notification closes everything it drained from the map.
			close(ch)
			break
		}
	}
	if len(jobWaiters.m[jobID]) == 0 {
		delete(jobWaiters.m, jobID)
	}
}
